package model

// workerScript is the Python program run by the subprocess backend. It reads
// one JSON request per line from stdin and writes one JSON envelope per line
// to stdout. The model and tokenizer are built once, on the "load" op.
const workerScript = `import sys
import json

import torch
from transformers import MBartForConditionalGeneration, MBart50TokenizerFast

model = None
tokenizer = None


def load(req):
    global model, tokenizer
    name = req["model"]
    cache_dir = req.get("cache_dir") or None
    tokenizer = MBart50TokenizerFast.from_pretrained(name, cache_dir=cache_dir)
    model = MBartForConditionalGeneration.from_pretrained(name, cache_dir=cache_dir)
    model.eval()
    return {"model": name}


def require_loaded():
    if model is None or tokenizer is None:
        raise RuntimeError("model not loaded")


def encode(req):
    require_loaded()
    tokenizer.src_lang = req["src_lang"]
    enc = tokenizer(
        req.get("text", ""),
        return_tensors="pt",
        padding=True,
        truncation=True,
        max_length=req.get("max_length", 512),
    )
    return {
        "input_ids": enc["input_ids"].tolist(),
        "attention_mask": enc["attention_mask"].tolist(),
    }


def lang_id(req):
    require_loaded()
    return {"id": tokenizer.lang_code_to_id[req["tag"]]}


def generate(req):
    require_loaded()
    with torch.no_grad():
        out = model.generate(
            input_ids=torch.tensor(req["input_ids"]),
            attention_mask=torch.tensor(req["attention_mask"]),
            forced_bos_token_id=req["forced_bos_token_id"],
            max_length=req.get("max_length", 512),
            num_beams=req.get("num_beams", 5),
            early_stopping=True,
        )
    return {"sequences": out.tolist()}


def decode(req):
    require_loaded()
    texts = tokenizer.batch_decode(
        req["sequences"], skip_special_tokens=req.get("skip_special_tokens", False)
    )
    return {"texts": texts}


def ping(req):
    return {"loaded": model is not None}


OPS = {
    "load": load,
    "encode": encode,
    "lang_id": lang_id,
    "generate": generate,
    "decode": decode,
    "ping": ping,
}

for line in sys.stdin:
    line = line.strip()
    if not line:
        continue
    try:
        req = json.loads(line)
        op = OPS.get(req.get("op"))
        if op is None:
            raise ValueError("unknown op: %s" % req.get("op"))
        print(json.dumps({"success": True, "result": op(req)}), flush=True)
    except Exception as e:
        print(json.dumps({"success": False, "error": str(e)}), flush=True)
`
